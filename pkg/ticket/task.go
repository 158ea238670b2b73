package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/util"
)

// DefaultWorkDelay stands in for the real configuration-test run time.
const DefaultWorkDelay = 5 * time.Second

// NewTask builds the job body run for each ticket: reset the machine to its
// initial config, then perform the (currently simulated) test run. The
// orchestrator integration will replace the sleep with the real job.
func NewTask(connector inventory.Connector, workDelay time.Duration) TaskFunc {
	if workDelay <= 0 {
		workDelay = DefaultWorkDelay
	}
	return func(ctx context.Context, t Ticket, machine inventory.Machine) (string, error) {
		if !connector.Reset(ctx, machine.Target()) {
			return "", fmt.Errorf("failed to reset machine %s for ticket %s", machine.Serial, t.ID)
		}
		util.WithTicket(t.ID).Infof("machine %s reset complete", machine.Serial)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(workDelay):
		}
		return fmt.Sprintf("Processed %s - %s", t.Vendor, t.Model), nil
	}
}
