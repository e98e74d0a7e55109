package strategyconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/momentum-lab/internal/experiment"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var validate = newValidator()

// newValidator reports fields by their YAML path
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === 필드 제약 (struct tag) ===
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return ValidationError{
				Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
				Message: fieldMessage(fe),
			}
		}
		return err
	}

	// === Experiment ===
	mc := cfg.Experiment.MonteCarlo
	if mc.TopNMin > 0 && mc.TopNMax > 0 && mc.TopNMin > mc.TopNMax {
		return ValidationError{"experiment.monte_carlo", "top_n_min must be <= top_n_max"}
	}
	for i, set := range cfg.Experiment.Grid.Lookbacks {
		if _, err := experiment.Horizons(set); err != nil {
			return ValidationError{fmt.Sprintf("experiment.grid.lookbacks[%d]", i), err.Error()}
		}
	}
	for i, set := range mc.LookbackSets {
		if _, err := experiment.Horizons(set); err != nil {
			return ValidationError{fmt.Sprintf("experiment.monte_carlo.lookback_sets[%d]", i), err.Error()}
		}
	}
	for i, key := range cfg.Experiment.GroupBy {
		if !contains(experiment.AggregateKeys, key) {
			return ValidationError{
				Field:   fmt.Sprintf("experiment.group_by[%d]", i),
				Message: fmt.Sprintf("must be one of: %s", strings.Join(experiment.AggregateKeys, ", ")),
			}
		}
	}

	// === 변환 결과 ===
	if err := cfg.RunConfig().Validate(); err != nil {
		return ValidationError{"config", err.Error()}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 단기 반전 구간 포함 경고
	if cfg.Signals.SkipDays == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_SKIP_WINDOW",
			Message: "skip_days = 0: momentum window includes the short-term reversal period",
		})
	}

	// 과도한 집중 경고
	if cfg.Portfolio.TopN < 10 {
		warnings = append(warnings, Warning{
			Code:    "CONCENTRATED",
			Message: fmt.Sprintf("top_n = %d: single names dominate portfolio risk", cfg.Portfolio.TopN),
		})
	}

	// 슬리피지 비관적 가정 경고
	if cfg.Portfolio.Slippage > 0.01 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_SLIPPAGE",
			Message: "slippage > 1%: cost drag will dominate returns",
		})
	}

	// 샘플 유니버스가 랭킹 깊이보다 작음
	depth := cfg.Portfolio.TopN + cfg.Portfolio.ExitBuffer
	if cfg.Universe.SampleSize > 0 && cfg.Universe.SampleSize < depth {
		warnings = append(warnings, Warning{
			Code:    "SMALL_UNIVERSE",
			Message: fmt.Sprintf("sample_size %d < top_n + exit_buffer = %d", cfg.Universe.SampleSize, depth),
		})
	}

	// PnL hold만 있고 버퍼 없음
	if cfg.Portfolio.PnLHoldThreshold != nil && cfg.Portfolio.ExitBuffer == 0 {
		warnings = append(warnings, Warning{
			Code:    "PNL_HOLD_WITHOUT_BUFFER",
			Message: "pnl_hold_threshold without exit_buffer: only winners are retained past top_n",
		})
	}

	return warnings
}

// === Helper Functions ===

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be < %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
