package observability

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	// EnablePprofTrace mounts net/http/pprof under /debug/pprof.
	EnablePprofTrace bool
	// EnableDiagnostics exposes process and hub counters on /diagnostics.
	EnableDiagnostics bool
}

func Default() Config {
	return Config{EnableDiagnostics: true}
}
