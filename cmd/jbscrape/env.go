package main

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/jbscrape/config"
	"github.com/aluiziolira/jbscrape/models"
)

// envDefaults reads JBSCRAPE_* overrides for flag defaults, keeping the
// first parse error.
type envDefaults struct {
	err error
}

func (e *envDefaults) str(name, def string) string {
	if value, ok := config.EnvString(name); ok {
		return value
	}
	return def
}

func (e *envDefaults) integer(name string, def int) int {
	value, ok, err := config.EnvInt(name)
	if err != nil {
		e.keep(err)
		return def
	}
	if ok {
		return value
	}
	return def
}

func (e *envDefaults) boolean(name string, def bool) bool {
	value, ok, err := config.EnvBool(name)
	if err != nil {
		e.keep(err)
		return def
	}
	if ok {
		return value
	}
	return def
}

func (e *envDefaults) keep(err error) {
	if e.err == nil {
		e.err = err
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
