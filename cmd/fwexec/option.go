package fwexec

// Options is the root command that groups sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Version  bool         `short:"v" long:"version" description:"print version and exit"`
	Serve    *ServeCmd    `command:"serve" description:"Start HTTP server"`
	Snapshot *SnapshotCmd `command:"snapshot" description:"Fetch and persist a FortiGate context snapshot"`
	Print    *VersionCmd  `command:"version" description:"Print version"`
}

// Init instantiates the sub-command referenced by the first argument so that
// flags.Parse can populate its fields.
func (o *Options) Init(firstArg string) {
	switch firstArg {
	case "serve":
		o.Serve = &ServeCmd{}
	case "snapshot":
		o.Snapshot = &SnapshotCmd{}
	case "version":
		o.Print = &VersionCmd{}
	}
}
