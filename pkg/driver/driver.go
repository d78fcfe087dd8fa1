// Package driver orchestrates one run of the test suite: install queue
// rules, start the interception engine, walk the Cartesian product of
// ingress/egress recipes for every configuration file, run the user command
// once per repeat, and tear everything down. Modeled directly on the
// teacher's orchestrator.Orchestrator state machine, re-themed from its
// Parse→Discover→...→Report lifecycle to spec.md §4.7's ten steps.
package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jhkim/fragscapy-go/pkg/cleanup"
	"github.com/jhkim/fragscapy-go/pkg/engine"
	"github.com/jhkim/fragscapy-go/pkg/nfrule"
	"github.com/jhkim/fragscapy-go/pkg/queue"
	"github.com/jhkim/fragscapy-go/pkg/recipedoc"
	"github.com/jhkim/fragscapy-go/pkg/telemetry"
	"github.com/jhkim/fragscapy-go/pkg/transform"
	"github.com/jhkim/fragscapy-go/pkg/txsock"
)

// State is one step of the driver's lifecycle, mirroring the teacher's
// TestState enum but re-themed to this system's ten steps.
type State int

const (
	StateResolve State = iota
	StateCleanOutputs
	StateInstallRules
	StateStartEngine
	StateRunCases
	StateStopEngine
	StateRemoveRules
	StateSummarize
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolve:
		return "RESOLVE"
	case StateCleanOutputs:
		return "CLEAN_OUTPUTS"
	case StateInstallRules:
		return "INSTALL_RULES"
	case StateStartEngine:
		return "START_ENGINE"
	case StateRunCases:
		return "RUN_CASES"
	case StateStopEngine:
		return "STOP_ENGINE"
	case StateRemoveRules:
		return "REMOVE_RULES"
	case StateSummarize:
		return "SUMMARIZE"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Options are the CLI-provided knobs spec.md §6's `start` subcommand exposes.
type Options struct {
	ModifFilePattern string
	StdoutPattern    string
	StderrPattern    string
	LocalPcap        string
	RemotePcap       string
	Append           bool
	Repeat           int // 0 means "use the plan's own rule: 1 if deterministic, else DefaultRepeat"
	DefaultRepeat    int
}

// TestCase is one (i, j) repetition of one configuration file's plan,
// mirroring the teacher's TargetInfo record style.
type TestCase struct {
	ConfIndex int
	CaseIndex int // i
	RepIndex  int // j
	ID        string
	ExitCode  int
	Ran       bool
	Err       error
}

// Summary tallies every TestCase across the run, following the teacher's
// reporting.TestReport/ProgressReporter shape, cut down to spec.md §4.7 step
// 10's passed/failed/not-run counts with truncated case-ID lists.
type Summary struct {
	Passed, Failed, NotRun int
	TruncatedIDs           []string
}

const maxTruncatedIDs = 20

// Driver runs the full lifecycle for one invocation of `fragscapy start`.
type Driver struct {
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	installer *nfrule.Installer
	sender    *txsock.Socket
	engine    *engine.Engine
	cleanup   *cleanup.Coordinator

	extraRules []nfrule.Rule
	dialQueue  func(qnum uint16, v6 bool) (queue.Queue, error)

	state State
	stop  bool

	opts        Options
	cases       []TestCase
	modifOpened map[string]bool
}

// New constructs a Driver. installer/sender may be nil in checkconfig mode
// (steps 3/4 onward are skipped by the caller in that mode).
func New(log *telemetry.Logger, metrics *telemetry.Metrics, installer *nfrule.Installer, sender *txsock.Socket, opts Options) *Driver {
	return &Driver{
		log:         log,
		metrics:     metrics,
		installer:   installer,
		sender:      sender,
		cleanup:     cleanup.New(log),
		state:       StateResolve,
		opts:        opts,
		modifOpened: make(map[string]bool),
	}
}

// RequestStop asks Run to stop after the current case completes.
func (d *Driver) RequestStop() { d.stop = true }

// SetEngine binds the interception engine this Driver starts/stops around
// the run. Leave unset for checkconfig-style dry runs that never start one.
func (d *Driver) SetEngine(e *engine.Engine) { d.engine = e }

// SetQueues configures the config-level rules (not carried by any recipe
// document) to install alongside each plan's own nfrules, and the dial
// function used to bind a queue.Queue for every installed rule's egress
// and/or ingress queue number. Leave unset for checkconfig-style dry runs
// that never start an engine.
func (d *Driver) SetQueues(extraRules []nfrule.Rule, dial func(qnum uint16, v6 bool) (queue.Queue, error)) {
	d.extraRules = extraRules
	d.dialQueue = dial
}

func (d *Driver) transition(s State) {
	d.log.Debug("driver state transition", "from", d.state.String(), "to", s.String())
	d.state = s
}

// Run executes spec.md §4.7's full lifecycle over confPaths, each parsed as
// a recipe document via recipedoc.
func (d *Driver) Run(ctx context.Context, confPaths []string) (Summary, error) {
	// Step 9/shutdown is always attempted, even on early failure; on the
	// normal path it runs before the summary is built.
	tornDown := false
	teardown := func() {
		if tornDown {
			return
		}
		tornDown = true
		d.transition(StateStopEngine)
		if d.engine != nil {
			d.engine.Stop()
		}
		d.transition(StateRemoveRules)
		if err := d.cleanup.RunAll(ctx); err != nil {
			d.log.Error("teardown had errors", "error", err)
		}
	}
	defer teardown()

	// Step 1: resolve.
	d.transition(StateResolve)
	plans, err := d.resolve(confPaths)
	if err != nil {
		d.transition(StateFailed)
		return Summary{}, err
	}

	// Step 2: clean outputs.
	d.transition(StateCleanOutputs)
	if err := d.cleanOutputs(); err != nil {
		d.log.Warn("clean-outputs failed, continuing", "error", err)
	}

	// Step 3: install rules.
	d.transition(StateInstallRules)
	if d.installer != nil {
		if err := d.installRules(plans); err != nil {
			d.transition(StateFailed)
			return Summary{}, err
		}
	}

	// Step 4: bind queues for every installed rule, then start engine workers.
	d.transition(StateStartEngine)
	if d.engine != nil {
		if d.dialQueue != nil {
			allRules := append(append([]nfrule.Rule(nil), d.extraRules...), rulesOf(plans)...)
			if err := BindQueues(d.engine, allRules, d.dialQueue); err != nil {
				d.transition(StateFailed)
				return Summary{}, fmt.Errorf("driver: bind queues: %w", err)
			}
		}
		if err := d.engine.Start(ctx); err != nil {
			d.transition(StateFailed)
			return Summary{}, err
		}
	}

	// Steps 5-8: per configuration file, per case, per repeat.
	d.transition(StateRunCases)
	for confIdx, p := range plans {
		if d.stop {
			break
		}
		if err := d.runPlan(ctx, confIdx, p); err != nil {
			d.log.Error("plan execution aborted", "conf", confIdx, "error", err)
			break
		}
	}

	teardown()
	d.transition(StateSummarize)
	return d.summarize(), nil
}

// resolve parses and validates every configuration file into a Plan.
func (d *Driver) resolve(confPaths []string) ([]*recipedoc.Plan, error) {
	parser := recipedoc.New(nil)
	plans := make([]*recipedoc.Plan, 0, len(confPaths))
	for _, path := range confPaths {
		doc, err := parser.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("driver: resolve %s: %w", path, err)
		}
		plan, err := recipedoc.Build(doc, transform.Global())
		if err != nil {
			return nil, fmt.Errorf("driver: resolve %s: %w", path, err)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// cleanOutputs removes, unless Append is set, every configured output file
// whose name has no placeholder; best-effort. Patterned files are not
// removed here.
func (d *Driver) cleanOutputs() error {
	if d.opts.Append {
		return nil
	}
	patterns := []string{d.opts.ModifFilePattern, d.opts.StdoutPattern, d.opts.StderrPattern, d.opts.LocalPcap, d.opts.RemotePcap}
	for _, p := range patterns {
		if p == "" || !strings.ContainsAny(p, "{") {
			if p != "" {
				os.Remove(p)
			}
			continue
		}
		// Patterned stdout/stderr and modification-log names are truncated
		// lazily as each case opens its own sink (openSink) or on first
		// write this run (logModif, via modifOpened). Patterned capture
		// files are only ever appended to.
	}
	return nil
}

// rulesOf flattens every plan's nfrules in configuration-file order.
func rulesOf(plans []*recipedoc.Plan) []nfrule.Rule {
	var rules []nfrule.Rule
	for _, p := range plans {
		rules = append(rules, p.Rules...)
	}
	return rules
}

// installRules installs the config-level rules plus every plan's nfrules,
// registering teardown with the cleanup Coordinator so a later failure
// still unwinds them.
func (d *Driver) installRules(plans []*recipedoc.Plan) error {
	installed := 0
	for _, r := range append(append([]nfrule.Rule(nil), d.extraRules...), rulesOf(plans)...) {
		if err := d.installer.Install(r); err != nil {
			return fmt.Errorf("driver: install rule: %w", err)
		}
		installed++
	}
	if installed > 0 {
		d.cleanup.Register("remove queue rules", func(ctx context.Context) error {
			return d.installer.RemoveAll()
		})
	}
	return nil
}

// runPlan walks one plan's pair-product of (input, output) recipe indices.
func (d *Driver) runPlan(ctx context.Context, confIdx int, p *recipedoc.Plan) error {
	inLen, outLen := p.Input.Len(), p.Output.Len()
	total := inLen * outLen
	for i := 0; i < total; i++ {
		if d.stop {
			return nil
		}
		inIdx := i % inLen
		outIdx := (i / inLen) % outLen

		inRecipe, err := p.Input.At(inIdx)
		if err != nil {
			return err
		}
		outRecipe, err := p.Output.At(outIdx)
		if err != nil {
			return err
		}

		if d.engine != nil {
			d.engine.SetIngressRecipe(inRecipe)
			d.engine.SetEgressRecipe(outRecipe)
		}

		inDet := inRecipe.IsDeterministic()
		outDet := outRecipe.IsDeterministic()
		repeat := d.opts.Repeat
		if repeat <= 0 {
			repeat = d.opts.DefaultRepeat
			if inDet && outDet {
				repeat = 1
			}
		}

		if err := d.logModif(confIdx, i, repeat, inRecipe, outRecipe); err != nil {
			d.log.Warn("failed writing modification log", "error", err)
		}

		for j := 0; j < repeat; j++ {
			tc := TestCase{ConfIndex: confIdx, CaseIndex: i, RepIndex: j, ID: caseID(confIdx, i, j)}
			d.runCase(ctx, p.Cmd, &tc)
			d.cases = append(d.cases, tc)
		}
	}
	return nil
}

// caseID renders the i_j case identifier spec.md §4.7 step 10 names
// (`iᵢ_jⱼ`); a conf-prefix distinguishes cases across multiple
// configuration files, where the base format alone would collide.
func caseID(confIdx, i, j int) string {
	if confIdx == 0 {
		return fmt.Sprintf("%d_%d", i, j)
	}
	return fmt.Sprintf("c%d_%d_%d", confIdx, i, j)
}

// runCase opens this repetition's sinks and runs the user command
// synchronously, grounded on the teacher's exec.Command-based sidecar
// execution, simplified to a single synchronous run.
func (d *Driver) runCase(ctx context.Context, cmdStr string, tc *TestCase) {
	if cmdStr == "" {
		tc.Ran = false
		tc.Err = fmt.Errorf("driver: empty cmd")
		if d.metrics != nil {
			d.metrics.CasesNotRun.Inc()
		}
		return
	}

	stdout, closeStdout := d.openSink(d.opts.StdoutPattern, tc)
	stderr, closeStderr := d.openSink(d.opts.StderrPattern, tc)
	defer closeStdout()
	defer closeStderr()

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdStr)
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}

	if d.engine != nil {
		d.engine.SetCapturePaths(expandPattern(d.opts.LocalPcap, tc), expandPattern(d.opts.RemotePcap, tc))
	}

	err := cmd.Run()
	tc.Ran = true
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			tc.ExitCode = exitErr.ExitCode()
		} else {
			tc.ExitCode = -1
			tc.Err = err
		}
	}

	if d.metrics != nil {
		if tc.ExitCode == 0 {
			d.metrics.CasesPassed.Inc()
		} else {
			d.metrics.CasesFailed.Inc()
		}
	}
}

func (d *Driver) openSink(pattern string, tc *TestCase) (*os.File, func()) {
	if pattern == "" {
		return nil, func() {}
	}
	path := expandPattern(pattern, tc)
	flags := os.O_CREATE | os.O_WRONLY
	if d.opts.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		d.log.Warn("failed opening sink", "path", path, "error", err)
		return nil, func() {}
	}
	return f, func() { f.Close() }
}

func expandPattern(pattern string, tc *TestCase) string {
	r := strings.NewReplacer(
		"{conf}", strconv.Itoa(tc.ConfIndex),
		"{i}", strconv.Itoa(tc.CaseIndex),
		"{j}", strconv.Itoa(tc.RepIndex),
	)
	return r.Replace(pattern)
}

// logModif appends one human-readable record to the modification file, per
// spec.md §6's exact template.
func (d *Driver) logModif(confIdx, i, repeat int, in, out *transform.Recipe) error {
	if d.opts.ModifFilePattern == "" {
		return nil
	}
	path := strings.NewReplacer("{conf}", strconv.Itoa(confIdx), "{i}", strconv.Itoa(i)).Replace(d.opts.ModifFilePattern)
	flags := os.O_CREATE | os.O_WRONLY
	if d.opts.Append || d.modifOpened[path] {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if d.modifOpened == nil {
		d.modifOpened = make(map[string]bool)
	}
	d.modifOpened[path] = true

	var b strings.Builder
	if repeat > 1 {
		fmt.Fprintf(&b, "Modification n°%d(repeated %d times):\n", i, repeat)
	} else {
		fmt.Fprintf(&b, "Modification n°%d:\n", i)
	}
	b.WriteString("> INPUT:\n")
	for _, line := range in.Describe() {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString("> OUTPUT:\n")
	for _, line := range out.Describe() {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString(strings.Repeat("=", 50) + "\n")

	_, err = f.WriteString(b.String())
	return err
}

func (d *Driver) summarize() Summary {
	s := Summary{}
	for _, tc := range d.cases {
		switch {
		case !tc.Ran:
			s.NotRun++
			if len(s.TruncatedIDs) < maxTruncatedIDs {
				s.TruncatedIDs = append(s.TruncatedIDs, tc.ID+"(not-run)")
			}
		case tc.ExitCode == 0:
			s.Passed++
		default:
			s.Failed++
			if len(s.TruncatedIDs) < maxTruncatedIDs {
				s.TruncatedIDs = append(s.TruncatedIDs, tc.ID+"(failed)")
			}
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("passed=%d failed=%d not-run=%d ids=%v", s.Passed, s.Failed, s.NotRun, s.TruncatedIDs)
}

// BindQueues constructs one Worker per rule's egress/ingress queue pair and
// binds it to e, for the caller to do once after resolving plans.
func BindQueues(e *engine.Engine, rules []nfrule.Rule, dial func(qnum uint16, v6 bool) (queue.Queue, error)) error {
	for _, r := range rules {
		fams := []bool{}
		if r.Fam&nfrule.FamilyV4 != 0 {
			fams = append(fams, false)
		}
		if r.Fam&nfrule.FamilyV6 != 0 {
			fams = append(fams, true)
		}
		for _, v6 := range fams {
			if r.Chain&nfrule.ChainEgress != 0 {
				q, err := dial(uint16(r.EgressQueue()), v6)
				if err != nil {
					return err
				}
				e.BindQueue(fmt.Sprintf("q%d-egress", r.EgressQueue()), q, queue.DirectionEgress)
			}
			if r.Chain&nfrule.ChainIngress != 0 {
				q, err := dial(uint16(r.IngressQueue()), v6)
				if err != nil {
					return err
				}
				e.BindQueue(fmt.Sprintf("q%d-ingress", r.IngressQueue()), q, queue.DirectionIngress)
			}
		}
	}
	return nil
}
