package config

import (
	"fmt"
	"reflect"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
)

var canonicalStatuses = []string{"PEN", "SUB", "RUN", "PAS", "COM", "ERR", "ABT", "OTH"}

// Validate validate the config as an input. If not valid, it returns error
func Validate(conf *ServerConfig) error {
	return validation.ValidateStruct(conf,
		nestedFields(&conf.Log,
			validation.Field(&conf.Log.Level, validation.In(
				LogLevelDebug,
				LogLevelInfo,
				LogLevelWarning,
				LogLevelError,
				LogLevelFatal,
			)),
		),
		nestedFields(&conf.DB,
			validation.Field(&conf.DB.DSN, validation.Required),
		),
		nestedFields(&conf.Remote,
			validation.Field(&conf.Remote.Host, validation.Required),
		),
		nestedFields(&conf.Lifecycle,
			validation.Field(&conf.Lifecycle.MinPollInterval, validation.Min(0)),
			validation.Field(&conf.Lifecycle.RetryAttempts, validation.Required, validation.Min(1)),
			validation.Field(&conf.Lifecycle.WorkspaceRoot, validation.Required),
			validation.Field(&conf.Lifecycle.StatusMap, validation.By(validateStatusMap)),
		),
		nestedFields(&conf.Poller,
			validation.Field(&conf.Poller.Schedule, validation.Required, validation.By(validateSchedule)),
			validation.Field(&conf.Poller.Concurrency, validation.Min(0)),
		),
	)
}

func validateStatusMap(value interface{}) error {
	statusMap, ok := value.(map[string]string)
	if !ok {
		return fmt.Errorf("can't convert value to status map")
	}

	var invalid []string
	for code, status := range statusMap {
		if !isCanonicalStatus(status) {
			invalid = append(invalid, code+"="+status)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("unknown canonical status [%s]", strings.Join(invalid, ","))
	}
	return nil
}

func isCanonicalStatus(status string) bool {
	for _, s := range canonicalStatuses {
		if strings.EqualFold(s, status) {
			return true
		}
	}
	return false
}

func validateSchedule(value interface{}) error {
	schedule, _ := value.(string)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid poller schedule: %w", err)
	}
	return nil
}

// ozzo-validation helper for nested validation struct
// https://github.com/go-ozzo/ozzo-validation/issues/136
func nestedFields(target interface{}, fieldRules ...*validation.FieldRules) *validation.FieldRules {
	return validation.Field(target, validation.By(func(value interface{}) error {
		valueV := reflect.Indirect(reflect.ValueOf(value))
		if valueV.CanAddr() {
			addr := valueV.Addr().Interface()
			return validation.ValidateStruct(addr, fieldRules...)
		}
		return validation.ValidateStruct(target, fieldRules...)
	}))
}
