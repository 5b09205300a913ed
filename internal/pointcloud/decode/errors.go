package decode

import "fmt"

// Kind tags a decoder failure per spec §4.1/§7. Callers switch on Kind via
// errors.As against *Error rather than matching message text.
type Kind int

const (
	// InvalidSignature means the leading magic bytes did not match the
	// format the decoder was selected for.
	InvalidSignature Kind = iota
	// UnsupportedVariant means the signature matched but the file uses a
	// variant this decoder does not implement (e.g. compressed E57).
	UnsupportedVariant
	// Truncated means the byte range ended before a required field or
	// record could be read in full.
	Truncated
	// EmptyCloud means the source contained zero usable points.
	EmptyCloud
	// EmptyResult means an operation (reconstruction) produced no output.
	EmptyResult
	// ProprietaryFormat means the extension is recognized but the format
	// is closed (.rcp/.rcs/.fls); Hint carries a conversion suggestion.
	ProprietaryFormat
	// UnsupportedExtension means no decoder is registered for the
	// extension at all.
	UnsupportedExtension
	// Cancelled means a cooperative operation observed its cancellation
	// flag set at a yield point.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidSignature:
		return "InvalidSignature"
	case UnsupportedVariant:
		return "UnsupportedVariant"
	case Truncated:
		return "Truncated"
	case EmptyCloud:
		return "EmptyCloud"
	case EmptyResult:
		return "EmptyResult"
	case ProprietaryFormat:
		return "ProprietaryFormat"
	case UnsupportedExtension:
		return "UnsupportedExtension"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the tagged error type every decoder (and the dispatcher and
// reconstructor) returns for the failure kinds above.
type Error struct {
	Kind   Kind
	Format string // e.g. "las", "ply" — empty where not applicable
	Hint   string // human-readable conversion hint, only set for ProprietaryFormat
	Err    error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Format, e.Kind, e.Hint)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Format, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, decode.InvalidSignature) style matching against
// a bare Kind value in addition to errors.As(&decode.Error{}).
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (k Kind) Error() string { return k.String() }

func newErr(format string, kind Kind, cause error) error {
	return &Error{Kind: kind, Format: format, Err: cause}
}

// Truncatedf builds a *Error of kind Truncated with a formatted cause.
func Truncatedf(format, msg string, args ...any) error {
	return newErr(format, Truncated, fmt.Errorf(msg, args...))
}

// InvalidSignaturef builds a *Error of kind InvalidSignature.
func InvalidSignaturef(format, msg string, args ...any) error {
	return newErr(format, InvalidSignature, fmt.Errorf(msg, args...))
}

// UnsupportedVariantf builds a *Error of kind UnsupportedVariant.
func UnsupportedVariantf(format, msg string, args ...any) error {
	return newErr(format, UnsupportedVariant, fmt.Errorf(msg, args...))
}

// EmptyCloudf builds a *Error of kind EmptyCloud.
func EmptyCloudf(format string) error {
	return newErr(format, EmptyCloud, fmt.Errorf("no points decoded"))
}

// Proprietary builds a *Error of kind ProprietaryFormat carrying a
// conversion hint, per §4.1/§6.
func Proprietary(ext, hint string) error {
	return &Error{Kind: ProprietaryFormat, Format: ext, Hint: hint}
}

// EmptyResultf builds a *Error of kind EmptyResult, used when an
// operation (reconstruction) produces no output.
func EmptyResultf(format, msg string, args ...any) error {
	return newErr(format, EmptyResult, fmt.Errorf(msg, args...))
}

// Cancelledf builds a *Error of kind Cancelled, used when a cooperative
// operation observes its cancellation flag set at a yield point.
func Cancelledf(format string) error {
	return newErr(format, Cancelled, fmt.Errorf("cancelled"))
}
