package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/doridoridoriand/wifiwatch/internal/config"
	"github.com/doridoridoriand/wifiwatch/internal/signal"
)

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// OptionalInt records an int flag and whether it was set.
type OptionalInt struct {
	value int
	set   bool
}

func (o *OptionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *OptionalInt) Value() (int, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

// OptionalMetricsMode records a metrics mode flag and whether it was set.
type OptionalMetricsMode struct {
	value config.MetricsMode
	set   bool
}

func (o *OptionalMetricsMode) Set(s string) error {
	mode, err := config.ParseMetricsMode(s)
	if err != nil {
		return fmt.Errorf("invalid metrics mode: %q (valid values: per-network, aggregated, both)", s)
	}
	o.value = mode
	o.set = true
	return nil
}

func (o *OptionalMetricsMode) String() string {
	if !o.set {
		return ""
	}
	return string(o.value)
}

func (o *OptionalMetricsMode) Value() (config.MetricsMode, bool) {
	return o.value, o.set
}

// OptionalUnit records the display unit selector.
type OptionalUnit struct {
	value signal.Unit
	set   bool
}

func (o *OptionalUnit) Set(s string) error {
	u, err := signal.ParseUnit(s)
	if err != nil {
		return err
	}
	o.value = u
	o.set = true
	return nil
}

func (o *OptionalUnit) String() string {
	if !o.set {
		return ""
	}
	return string(o.value)
}

func (o *OptionalUnit) Value() (signal.Unit, bool) {
	return o.value, o.set
}
