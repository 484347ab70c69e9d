package commands

import (
	"github.com/spf13/cobra"

	"github.com/macropower/stsync/pkg/version"
)

func GetVersionString() string {
	return version.Version + "+" + version.Revision
}

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version of the stsync CLI",
		Run: func(cc *cobra.Command, _ []string) {
			cc.Println(GetVersionString())
		},
	}
}
