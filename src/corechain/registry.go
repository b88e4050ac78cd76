package corechain

import (
	"fmt"
	"sort"
	"sync"
)

// HandlerRegistry is the process-wide table mapping a chain-type tag to its
// vtable of account/address/transfer/wallet/manager operations. It is
// installed once (idempotent, safe under concurrent calls) and thereafter
// read-only.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[ChainType]*Handlers
}

var (
	globalRegistry     = &HandlerRegistry{handlers: make(map[ChainType]*Handlers)}
	globalInstallOnce  sync.Once
	globalInstallFuncs []func(*HandlerRegistry)
)

// DefaultRegistry returns the process-wide registry, installing built-in
// handlers exactly once on first access. Builtin installers are registered
// via RegisterBuiltin before first use (typically from each chain-family
// package's init).
func DefaultRegistry() *HandlerRegistry {
	globalInstallOnce.Do(func() {
		for _, install := range globalInstallFuncs {
			install(globalRegistry)
		}
	})
	return globalRegistry
}

// RegisterBuiltin queues an installer to run the first time DefaultRegistry
// is accessed. Chain-family packages call this from init() so that import
// order never matters: installers run in import order; Install accepts a
// repeated registration only for the same *Handlers value and rejects any
// other vtable for a chain type already installed.
func RegisterBuiltin(install func(*HandlerRegistry)) {
	globalInstallFuncs = append(globalInstallFuncs, install)
}

// Install registers h under h.Type. Re-installing the same *Handlers value
// is a no-op; installing any other vtable (even one with equal contents)
// for an already-installed type is rejected to preserve the "install once"
// contract.
//
// Install validates that every function group the wallet lifecycle can
// reach is non-nil; an incomplete vtable is rejected with
// ErrCodeHandlerIncomplete rather than silently admitted and later
// nil-pointer-panicking at call time.
func (r *HandlerRegistry) Install(h *Handlers) error {
	if h == nil || h.Type == "" {
		return NewNonRetryableError(ErrCodeHandlerIncomplete, "handler vtable must have a chain type", nil)
	}
	if err := validateHandlers(h); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handlers[h.Type]; ok {
		if existing == h {
			return nil
		}
		return NewNonRetryableError(ErrCodeHandlerIncomplete,
			fmt.Sprintf("handler for chain type %q already installed", h.Type), nil)
	}
	r.handlers[h.Type] = h
	return nil
}

// Lookup returns the installed handlers for t, or an error if none is
// installed. Every polymorphic operation in the core resolves through this.
func (r *HandlerRegistry) Lookup(t ChainType) (*Handlers, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[t]
	if !ok {
		return nil, NewNonRetryableError(ErrCodeHandlerNotInstalled,
			fmt.Sprintf("no handler installed for chain type %q", t), nil)
	}
	return h, nil
}

// InstalledTypes returns the sorted list of chain types currently installed.
func (r *HandlerRegistry) InstalledTypes() []ChainType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ChainType, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateHandlers(h *Handlers) error {
	missing := func(name string, present bool) error {
		if !present {
			return NewNonRetryableError(ErrCodeHandlerIncomplete,
				fmt.Sprintf("handler %q missing required function %s", h.Type, name), nil)
		}
		return nil
	}
	checks := []struct {
		name    string
		present bool
	}{
		{"Account.FromSeed", h.Account.FromSeed != nil},
		{"Account.FromPublicKey", h.Account.FromPublicKey != nil},
		{"Account.FromSerialization", h.Account.FromSerialization != nil},
		{"Account.ToSerialization", h.Account.ToSerialization != nil},
		{"Account.Address", h.Account.Address != nil},
		{"Address.String", h.Address.String != nil},
		{"Address.Equal", h.Address.Equal != nil},
		{"Transfer.Build", h.Transfer.Build != nil},
		{"Transfer.Sign", h.Transfer.Sign != nil},
		{"Transfer.Sources", h.Transfer.Sources != nil},
		{"Transfer.Targets", h.Transfer.Targets != nil},
		{"Transfer.Amount", h.Transfer.Amount != nil},
		{"Transfer.Fee", h.Transfer.Fee != nil},
		{"Transfer.Hash", h.Transfer.Hash != nil},
		{"Wallet.Create", h.Wallet.Create != nil},
		{"Wallet.Balance", h.Wallet.Balance != nil},
		{"Wallet.GetAddress", h.Wallet.GetAddress != nil},
		{"Wallet.SetDefaultFeeBasis", h.Wallet.SetDefaultFeeBasis != nil},
		{"Wallet.EstimateFee", h.Wallet.EstimateFee != nil},
		{"Manager.RecoverTransfer", h.Manager.RecoverTransfer != nil},
	}
	for _, c := range checks {
		if err := missing(c.name, c.present); err != nil {
			return err
		}
	}
	return nil
}
