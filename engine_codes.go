package shieldforge

import "github.com/MrEthical07/shieldforge/codes"

// GenerateResetCode returns a numeric code of length digits drawn from the operating
// system CSPRNG. A non-positive length selects six digits.
func (e *Engine) GenerateResetCode(length int) (string, error) {
	code, err := codes.ResetCode(length)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricResetCodeGenerated)
	return code, nil
}

// GenerateOpaqueToken returns an alphanumeric token suitable for links and API keys.
func (e *Engine) GenerateOpaqueToken(length int) (string, error) {
	return codes.OpaqueToken(length)
}

// HashResetCode returns the hex SHA-256 digest to persist in place of code.
func (e *Engine) HashResetCode(code string) string {
	return codes.Hash(code)
}

// VerifyResetCode compares code against storedHash in constant time.
func (e *Engine) VerifyResetCode(code, storedHash string) bool {
	ok := codes.Verify(code, storedHash)
	if !ok {
		e.metricInc(MetricResetCodeVerifyFailure)
	}
	return ok
}
