package zmqsub

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/zmqsub/build"
	"github.com/lightningnetwork/zmqsub/monitoring"
	"github.com/lightningnetwork/zmqsub/signal"
	"github.com/lightningnetwork/zmqsub/subscribe"
	"github.com/lightningnetwork/zmqsub/transport"
)

// Subsystem defines the logging code for the daemon itself.
const Subsystem = "ZSUB"

// zsubLog is the daemon logger. It is replaced by SetupLoggers.
var zsubLog btclog.Logger = btclog.Disabled

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager,
	interceptor signal.Interceptor) {

	genLogger := root.GenSubLogger

	// The daemon logger requests a shutdown on critical errors.
	zsubLog = build.NewShutdownLogger(
		genLogger(Subsystem), interceptor.RequestShutdown,
	)

	AddSubLogger(root, signal.Subsystem, signal.UseLogger)
	AddSubLogger(root, subscribe.Subsystem, subscribe.UseLogger)
	AddSubLogger(root, transport.Subsystem, transport.UseLogger)
	AddSubLogger(root, monitoring.Subsystem, monitoring.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of a sub system.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := root.GenSubLogger(subsystem)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
