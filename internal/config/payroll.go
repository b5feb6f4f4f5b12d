package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	HoursSourceApproved = "approved_working_hours"
	HoursSourceFixed    = "fixed"
)

// PayrollPolicy holds the pay computation parameters used by pay runs.
type PayrollPolicy struct {
	DefaultHourlyRate decimal.Decimal
	DeductionRate     decimal.Decimal
	FixedHours        decimal.Decimal
	HoursSource       string
	LeaseTTL          time.Duration
}

type payrollPolicyFile struct {
	DefaultHourlyRate string        `mapstructure:"defaultHourlyRate"`
	DeductionRate     string        `mapstructure:"deductionRate"`
	FixedHours        string        `mapstructure:"fixedHours"`
	HoursSource       string        `mapstructure:"hoursSource"`
	LeaseTTL          time.Duration `mapstructure:"leaseTTL"`
}

func DefaultPayrollPolicy() PayrollPolicy {
	return PayrollPolicy{
		DefaultHourlyRate: decimal.NewFromInt(25),
		DeductionRate:     decimal.RequireFromString("0.10"),
		FixedHours:        decimal.NewFromInt(40),
		HoursSource:       HoursSourceApproved,
		LeaseTTL:          2 * time.Minute,
	}
}

type PayrollPolicyHolder struct {
	current atomic.Value // holds PayrollPolicy
}

// NewStaticPayrollPolicyHolder returns a holder that never reloads.
func NewStaticPayrollPolicyHolder(policy PayrollPolicy) *PayrollPolicyHolder {
	holder := &PayrollPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPayrollPolicyHolder(log *zap.Logger) (*PayrollPolicyHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.payroll")

	v := viper.New()

	v.SetConfigName("payroll")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/workforce/config")
	v.AddConfigPath("/etc/workforce")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WORKFORCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPayrollPolicy()
	v.SetDefault("payroll.defaultHourlyRate", defaults.DefaultHourlyRate.String())
	v.SetDefault("payroll.deductionRate", defaults.DeductionRate.String())
	v.SetDefault("payroll.fixedHours", defaults.FixedHours.String())
	v.SetDefault("payroll.hoursSource", defaults.HoursSource)
	v.SetDefault("payroll.leaseTTL", defaults.LeaseTTL)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodePayrollPolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPayrollPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePayrollPolicy(v)
		if err != nil {
			log.Warn("payroll policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("payroll policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PayrollPolicyHolder) Get() PayrollPolicy {
	return h.current.Load().(PayrollPolicy)
}

func decodePayrollPolicy(v *viper.Viper) (PayrollPolicy, error) {
	var raw payrollPolicyFile
	if err := v.UnmarshalKey("payroll", &raw); err != nil {
		return PayrollPolicy{}, err
	}
	return parsePayrollPolicy(raw)
}

func parsePayrollPolicy(raw payrollPolicyFile) (PayrollPolicy, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw.DefaultHourlyRate))
	if err != nil {
		return PayrollPolicy{}, errors.New("payroll.defaultHourlyRate must be a decimal")
	}
	deduction, err := decimal.NewFromString(strings.TrimSpace(raw.DeductionRate))
	if err != nil {
		return PayrollPolicy{}, errors.New("payroll.deductionRate must be a decimal")
	}
	fixed, err := decimal.NewFromString(strings.TrimSpace(raw.FixedHours))
	if err != nil {
		return PayrollPolicy{}, errors.New("payroll.fixedHours must be a decimal")
	}
	policy := PayrollPolicy{
		DefaultHourlyRate: rate,
		DeductionRate:     deduction,
		FixedHours:        fixed,
		HoursSource:       strings.ToLower(strings.TrimSpace(raw.HoursSource)),
		LeaseTTL:          raw.LeaseTTL,
	}
	if err := ValidatePayrollPolicy(policy); err != nil {
		return PayrollPolicy{}, err
	}
	return policy, nil
}

func ValidatePayrollPolicy(p PayrollPolicy) error {
	if p.DefaultHourlyRate.IsNegative() {
		return errors.New("payroll.defaultHourlyRate cannot be negative")
	}
	if p.DeductionRate.IsNegative() || p.DeductionRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("payroll.deductionRate must be within [0, 1]")
	}
	if p.FixedHours.IsNegative() {
		return errors.New("payroll.fixedHours cannot be negative")
	}
	switch p.HoursSource {
	case HoursSourceApproved, HoursSourceFixed:
	default:
		return errors.New("payroll.hoursSource must be approved_working_hours or fixed")
	}
	if p.LeaseTTL <= 0 {
		return errors.New("payroll.leaseTTL must be positive")
	}
	return nil
}
