package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger gathers what a Lambda resolved during init and writes it as
// one "cold start" event, so a misconfigured deployment shows up in the first
// log line of a new container.
type StartupLogger struct {
	name     string
	took     time.Duration
	sections map[string]map[string]string
	features map[string]bool
}

// NewStartupLogger starts a cold-start summary for the named function.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		sections: make(map[string]map[string]string),
		features: make(map[string]bool),
	}
}

func (s *StartupLogger) add(section, key, value string) *StartupLogger {
	m, ok := s.sections[section]
	if !ok {
		m = make(map[string]string)
		s.sections[section] = m
	}
	m[key] = value
	return s
}

// S3Bucket records a bucket under label.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	return s.add("s3Buckets", label, name)
}

// DynamoTable records a table under label. An empty name logs as "disabled".
func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	if name == "" {
		name = "disabled"
	}
	return s.add("dynamoTables", label, name)
}

// SSMParam records a parameter path. Values are never logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.add("ssmParams", label, path)
}

// Binary records where an external tool resolved; "" logs as "missing".
func (s *StartupLogger) Binary(name, path string) *StartupLogger {
	if path == "" {
		path = "missing"
	}
	return s.add("binaries", name, path)
}

// Feature records whether an optional capability is on.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config records a non-secret setting.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	return s.add("config", key, value)
}

// InitDuration records how long init() took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.took = d
	return s
}

// EnvOrDefault returns $envVar, or defaultVal when it is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log writes the summary at info level.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Lambda cold start complete")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	evt = evt.Dict("lambda", zerolog.Dict().
		Str("name", s.name).
		Str("functionName", os.Getenv("AWS_LAMBDA_FUNCTION_NAME")).
		Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
		Str("region", os.Getenv("AWS_REGION")).
		Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")).
		Str("goVersion", runtime.Version()).
		Str("logLevel", os.Getenv(LevelEnv)))

	for section, values := range s.sections {
		d := zerolog.Dict()
		for k, v := range values {
			d = d.Str(k, v)
		}
		evt = evt.Dict(section, d)
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if s.took > 0 {
		evt = evt.Dur("initDuration", s.took)
	}
	return evt
}
