package domain

// Route is a client-visible view path.
type Route string

const (
	RouteRoot           Route = "/"
	RouteSignIn         Route = "/signin"
	RouteSignUp         Route = "/signup"
	RouteForgotPassword Route = "/forgot-password"
	RouteChat           Route = "/chat"
)

// Step is the stage of the forgot-password view.
type Step string

const (
	StepRequest Step = "request"
	StepReset   Step = "reset"
)

// NoticeKind classifies a transient notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient, user-visible notification.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Success builds a success notice.
func Success(text string) Notice {
	return Notice{Kind: NoticeSuccess, Text: text}
}

// Failure builds an error notice.
func Failure(text string) Notice {
	return Notice{Kind: NoticeError, Text: text}
}
