package apperror

var (
	ErrParameter         = &Error{Kind: KindParameter}
	ErrClock             = &Error{Kind: KindClock}
	ErrDataIntegrity     = &Error{Kind: KindDataIntegrity}
	ErrTimeValidation    = &Error{Kind: KindTimeValidation}
	ErrOverlap           = &Error{Kind: KindOverlap}
	ErrNotCheckedIn      = &Error{Kind: KindNotCheckedIn}
	ErrAlreadyCheckedOut = &Error{Kind: KindAlreadyCheckedOut}
	ErrTransientNetwork  = &Error{Kind: KindTransientNetwork}
	ErrRemoteRejection   = &Error{Kind: KindRemoteRejection}
)

// ContactAdmin is appended to data-integrity messages.
const ContactAdmin = "please contact an administrator to correct this attendance record"
