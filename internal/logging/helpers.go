package logging

// Category convenience wrappers, one set per subsystem that logs heavily.

func Map(format string, args ...interface{}) {
	Get(CategoryMap).Info(format, args...)
}
func MapDebug(format string, args ...interface{}) {
	Get(CategoryMap).Debug(format, args...)
}

func Glossary(format string, args ...interface{}) {
	Get(CategoryGlossary).Info(format, args...)
}

func Hints(format string, args ...interface{}) {
	Get(CategoryHints).Debug(format, args...)
}

func Patterns(format string, args ...interface{}) {
	Get(CategoryPatterns).Debug(format, args...)
}

func LLKB(format string, args ...interface{}) {
	Get(CategoryLLKB).Info(format, args...)
}
func LLKBDebug(format string, args ...interface{}) {
	Get(CategoryLLKB).Debug(format, args...)
}
func LLKBWarn(format string, args ...interface{}) {
	Get(CategoryLLKB).Warn(format, args...)
}

func Classify(format string, args ...interface{}) {
	Get(CategoryClassify).Debug(format, args...)
}

func Healing(format string, args ...interface{}) {
	Get(CategoryHealing).Info(format, args...)
}
func HealingDebug(format string, args ...interface{}) {
	Get(CategoryHealing).Debug(format, args...)
}
func HealingWarn(format string, args ...interface{}) {
	Get(CategoryHealing).Warn(format, args...)
}

func Runner(format string, args ...interface{}) {
	Get(CategoryRunner).Info(format, args...)
}

func Store(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}
func StoreWarn(format string, args ...interface{}) {
	Get(CategoryStore).Warn(format, args...)
}

func Watch(format string, args ...interface{}) {
	Get(CategoryWatch).Info(format, args...)
}

func Probe(format string, args ...interface{}) {
	Get(CategoryProbe).Debug(format, args...)
}

func Report(format string, args ...interface{}) {
	Get(CategoryReport).Debug(format, args...)
}
