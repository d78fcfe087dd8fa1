package nfrule

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/coreos/go-iptables/iptables"
)

const chainName = "FRAGSCAPY"

// Installer installs Rules against the host's netfilter tables via
// go-iptables and keeps a ledger of what it installed, so teardown can
// remove exactly what was added, in reverse order, even after a partial
// failure. Grounded on the teacher's cleanup.Coordinator "things to undo"
// ledger pattern.
type Installer struct {
	v4, v6 iptablesClient
	undo   []func() error
}

// iptablesClient is the subset of *iptables.IPTables the installer needs;
// narrowed to ease substituting a fake in tests.
type iptablesClient interface {
	NewChain(table, chain string) error
	ClearChain(table, chain string) error
	DeleteChain(table, chain string) error
	AppendUnique(table, chain string, rulespec ...string) error
	Delete(table, chain string, rulespec ...string) error
	Exists(table, chain string, rulespec ...string) (bool, error)
}

// NewInstaller constructs an Installer bound to the host's iptables (v4)
// and ip6tables (v6) binaries.
func NewInstaller() (*Installer, error) {
	v4, err := iptables.NewWithProtocol(iptables.ProtocolIPv4)
	if err != nil {
		return nil, fmt.Errorf("nfrule: init iptables: %w", err)
	}
	v6, err := iptables.NewWithProtocol(iptables.ProtocolIPv6)
	if err != nil {
		return nil, fmt.Errorf("nfrule: init ip6tables: %w", err)
	}
	return &Installer{v4: v4, v6: v6}, nil
}

func (in *Installer) clientFor(fam Family) iptablesClient {
	if fam == FamilyV6 {
		return in.v6
	}
	return in.v4
}

// Install appends r's queue rules (and, for a TCP rule on the egress chain,
// the companion RST-drop rule) directly to the filter table's built-in
// OUTPUT (egress) and INPUT (ingress) chains for every selected family. It
// also creates the FRAGSCAPY chain when missing, but puts no rule in it.
// On any failure it unwinds whatever it already installed for this call
// before returning, so a caller need not call RemoveAll itself for a single
// failed Install — though a multi-rule Install sequence should still call
// RemoveAll on the Installer to unwind prior successful Installs.
func (in *Installer) Install(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var fams []Family
	if r.Fam&FamilyV4 != 0 {
		fams = append(fams, FamilyV4)
	}
	if r.Fam&FamilyV6 != 0 {
		fams = append(fams, FamilyV6)
	}

	var installed []func() error
	rollback := func() {
		for i := len(installed) - 1; i >= 0; i-- {
			_ = installed[i]()
		}
	}

	for _, fam := range fams {
		cl := in.clientFor(fam)
		if err := ensureChain(cl); err != nil {
			rollback()
			return &PrivilegeError{Rule: r, Err: err}
		}

		if r.Chain&ChainEgress != 0 {
			spec := buildQueueSpec(r, fam, "OUTPUT", r.EgressQueue())
			if err := cl.AppendUnique("filter", "OUTPUT", spec...); err != nil {
				rollback()
				return &PrivilegeError{Rule: r, Err: err}
			}
			s := spec
			installed = append(installed, func() error { return cl.Delete("filter", "OUTPUT", s...) })
		}
		if r.Chain&ChainIngress != 0 {
			spec := buildQueueSpec(r, fam, "INPUT", r.IngressQueue())
			if err := cl.AppendUnique("filter", "INPUT", spec...); err != nil {
				rollback()
				return &PrivilegeError{Rule: r, Err: err}
			}
			s := spec
			installed = append(installed, func() error { return cl.Delete("filter", "INPUT", s...) })
		}

		if r.Proto == "tcp" {
			rstSpec := buildRSTDropSpec(r, fam)
			if r.Chain&ChainEgress != 0 {
				if err := cl.AppendUnique("filter", "OUTPUT", rstSpec...); err != nil {
					rollback()
					return &PrivilegeError{Rule: r, Err: err}
				}
				s := rstSpec
				installed = append(installed, func() error { return cl.Delete("filter", "OUTPUT", s...) })
			}
		}
	}

	in.undo = append(in.undo, installed...)
	return nil
}

// RemoveAll removes every rule this Installer has installed, in reverse
// order, and is idempotent: missing rules (already removed, or never
// successfully installed) are ignored. It never returns early; it collects
// and joins every removal error so a caller sees the full picture.
func (in *Installer) RemoveAll() error {
	var errs []error
	for i := len(in.undo) - 1; i >= 0; i-- {
		if err := in.undo[i](); err != nil {
			errs = append(errs, err)
		}
	}
	in.undo = nil
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("nfrule: %d rule(s) failed to remove: %w", len(errs), errors.Join(errs...))
}

func ensureChain(cl iptablesClient) error {
	exists, err := cl.Exists("filter", chainName)
	if err == nil && exists {
		return nil
	}
	return cl.NewChain("filter", chainName)
}

func buildQueueSpec(r Rule, fam Family, builtin string, qnum int) []string {
	spec := []string{}
	if r.Proto != "" {
		spec = append(spec, "-p", r.Proto)
	}
	host := r.Host
	if fam == FamilyV6 {
		host = r.Host6
	}
	if host != "" {
		if builtin == "OUTPUT" {
			spec = append(spec, "-d", host)
		} else {
			spec = append(spec, "-s", host)
		}
	}
	if r.Port != 0 {
		flag := "--dport"
		if builtin == "INPUT" {
			flag = "--sport"
		}
		spec = append(spec, flag, strconv.Itoa(r.Port))
	}
	spec = append(spec, "-j", "NFQUEUE", "--queue-num", strconv.Itoa(qnum))
	return spec
}

func buildRSTDropSpec(r Rule, fam Family) []string {
	spec := []string{"-p", "tcp"}
	host := r.Host
	if fam == FamilyV6 {
		host = r.Host6
	}
	if host != "" {
		spec = append(spec, "-d", host)
	}
	if r.Port != 0 {
		spec = append(spec, "--dport", strconv.Itoa(r.Port))
	}
	spec = append(spec, "--tcp-flags", "RST", "RST", "-j", "DROP")
	return spec
}
