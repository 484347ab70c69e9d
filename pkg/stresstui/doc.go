// Package stresstui renders the progress of a stress run in the terminal.
//
// [RunModel] is a bubbletea model driven by the events of a
// [stress.Runner]. [TUI] wires a runner to the model and redirects log
// output above the progress display.
package stresstui
