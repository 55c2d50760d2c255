// Package gate holds the approval step between planning and applying.
// Nothing mutates the cluster without passing a gate.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/shoal/pkg/report"
	"github.com/cuemby/shoal/pkg/types"
)

// Gate shows the operator what a run observed and intends, then
// answers whether the work may proceed
type Gate interface {
	Present(snap *types.Snapshot, plan types.Plan) (bool, error)
}

// TerminalGate renders the snapshot and plan, then asks for
// confirmation. A plan with no work passes without prompting, and the
// default answer is no.
type TerminalGate struct {
	Topo *types.Topology
	In   io.Reader
	Out  io.Writer
}

func (g *TerminalGate) Present(snap *types.Snapshot, plan types.Plan) (bool, error) {
	report.WriteSnapshot(g.Out, g.Topo, snap)
	report.WritePlan(g.Out, plan)

	if !plan.HasWork() {
		return true, nil
	}

	fmt.Fprint(g.Out, "Apply these actions? [y/N] ")

	line, err := bufio.NewReader(g.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// AutoApprove passes every plan without rendering or prompting. Used
// by --yes and by watch mode, where no operator is present.
type AutoApprove struct{}

func (AutoApprove) Present(*types.Snapshot, types.Plan) (bool, error) {
	return true, nil
}
