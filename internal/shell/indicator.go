package shell

import (
	"time"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/model"
)

// Indicator states of the test button.
const (
	IndicatorIdle    = "idle"
	IndicatorTesting = "testing"
	IndicatorSuccess = "success"
	IndicatorFailure = "failure"
)

// Indicator derives the test button state from the last recorded run. The
// state is a pure function of the run and the clock: a success reads as
// testing for SuccessDelay, then success for SuccessHold; a failure reads as
// failure for FailureHold. Both then fall back to idle.
func Indicator(run model.TestRun, now time.Time, cfg config.TestIndicatorConfig) model.IndicatorDescriptor {
	idle := model.IndicatorDescriptor{State: IndicatorIdle, Label: "Test"}
	testing := model.IndicatorDescriptor{State: IndicatorTesting, Label: "Testing"}

	if run.StartedAt == nil {
		return idle
	}
	if run.FinishedAt == nil || run.Result == model.TestPending {
		return testing
	}

	elapsed := now.Sub(*run.FinishedAt)
	switch run.Result {
	case model.TestSuccess:
		if elapsed < cfg.SuccessDelay {
			return testing
		}
		if elapsed < cfg.SuccessDelay+cfg.SuccessHold {
			return model.IndicatorDescriptor{State: IndicatorSuccess, Label: "OK!", Message: run.Message}
		}
	case model.TestFailure:
		if elapsed < cfg.FailureHold {
			return model.IndicatorDescriptor{State: IndicatorFailure, Label: "ERROR", Message: run.Message}
		}
	}
	return idle
}
