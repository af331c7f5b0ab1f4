package hook

import "github.com/fennwick/sigtap/core/signal"

// defaultRegistry backs the package-level install helpers. Registration
// ownership lives at the dispatch slot, so hooks installed here and hooks
// installed through any other registry share the same at-most-one-per-kind
// accounting.
var defaultRegistry = NewRegistry()

// InstallNoticeHook installs NOTICE interception on the process-wide registry.
func InstallNoticeHook(sink signal.Sink) (*Hook, error) {
	return defaultRegistry.Install(signal.KindNotice, sink)
}

// InstallWarningHook installs WARNING interception on the process-wide registry.
func InstallWarningHook(sink signal.Sink) (*Hook, error) {
	return defaultRegistry.Install(signal.KindWarning, sink)
}

// InstallFatalHook installs FATAL interception on the process-wide registry.
func InstallFatalHook(sink signal.Sink) (*Hook, error) {
	return defaultRegistry.Install(signal.KindFatal, sink)
}
