package tunnel

import "errors"

var (
	errNoAuth        = errors.New("no ssh authentication method configured")
	errNotStarted    = errors.New("tunnel not started")
	errAlreadyActive = errors.New("tunnel already started")
	errReadKey       = errors.New("failed to read ssh key")
	errParseKey      = errors.New("failed to parse ssh key")
	errKnownHosts    = errors.New("failed to load known_hosts")
	errDial          = errors.New("failed to reach ssh host")
	errListen        = errors.New("failed to open local listener")
)
