package stress

type (
	// Sent once with the number of scenarios in the run.
	EventSetScenarioTotal int

	// Sent when a scenario starts.
	EventRunningScenario string

	// Sent when a scenario has finished, successfully or not.
	EventScenarioDone Result

	// Sent when all scenarios have finished.
	EventDone struct {
		Err error
	}
)
