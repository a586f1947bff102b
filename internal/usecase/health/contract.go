package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ArchiveEchoer verifies the archive answers a C-ECHO.
type ArchiveEchoer interface {
	Echo(ctx context.Context) error
}
