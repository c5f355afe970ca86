package hook

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/a-peyrard/blackmagic/logging"
	"github.com/a-peyrard/blackmagic/metrics"
)

// State installs one target exactly once and keeps its original trampoline.
type State struct {
	backend   Backend
	mu        sync.Mutex
	installed atomic.Bool
	original  atomic.Pointer[reflect.Value]
}

func NewState(backend Backend) *State {
	if backend == nil {
		backend = DefaultBackend()
	}
	return &State{backend: backend}
}

// InstallAt creates then enables the hook. It is a no-op returning true once installed.
// A failed enable removes the freshly created hook before the failure is reported.
func (s *State) InstallAt(target *Target, detour reflect.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.installed.Load() {
		return true
	}
	if target == nil || !target.fn.IsValid() {
		return report(InvalidInstallArgument, target, "nil target", nil)
	}
	if !detour.IsValid() || detour.Kind() != reflect.Func || detour.IsNil() {
		return report(InvalidInstallArgument, target, "nil detour", nil)
	}
	if detour.Type() != target.typ {
		return report(InvalidInstallArgument, target, fmt.Sprintf("detour type %s does not match %s", detour.Type(), target.typ), nil)
	}

	original, err := s.backend.CreateHook(target, detour)
	if err != nil {
		metrics.Default().Installs.WithLabelValues(target.name, "create_failed").Inc()
		return report(CreateHookFailed, target, "backend refused to create the hook", err)
	}
	if !s.backend.EnableHook(target) {
		s.backend.RemoveHook(target)
		metrics.Default().Installs.WithLabelValues(target.name, "enable_failed").Inc()
		return report(EnableHookFailed, target, "backend refused to enable the hook", nil)
	}

	s.original.Store(&original)
	s.installed.Store(true)
	metrics.Default().Installs.WithLabelValues(target.name, "installed").Inc()
	logging.Get().Debug().EmbedObject(target).Msg("hook installed")
	return true
}

// Uninstall disables and removes the hook. It is a no-op returning true when not installed.
func (s *State) Uninstall(target *Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.installed.Load() {
		return true
	}
	disabled := s.backend.DisableHook(target)
	removed := s.backend.RemoveHook(target)
	s.installed.Store(false)
	s.original.Store(nil)
	logging.Get().Debug().EmbedObject(target).Bool("disabled", disabled).Bool("removed", removed).Msg("hook uninstalled")
	return disabled && removed
}

func (s *State) IsInstalled() bool {
	return s.installed.Load()
}

// Original returns the trampoline stored at install time.
func (s *State) Original() (reflect.Value, bool) {
	if p := s.original.Load(); p != nil {
		return *p, true
	}
	return reflect.Value{}, false
}
