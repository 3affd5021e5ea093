package build

// DeploymentType selects how sub-loggers are created. It is fixed at compile
// time by the dev build tag.
type DeploymentType byte

const (
	// Development builds honor LoggingType, so unit tests can log to
	// stdout through the stdlog tag.
	Development DeploymentType = iota

	// Production builds always log through the caller's sub-logger
	// constructor.
	Production
)

// String returns the name reported by the version command.
func (b DeploymentType) String() string {
	switch b {
	case Development:
		return "development"
	case Production:
		return "production"
	default:
		return "unknown"
	}
}
