package domain

// Field names a form input. The set is closed: every form in the
// application is built from these fields.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldToken    Field = "token"
)

// Fields lists every known field in render order.
var Fields = []Field{FieldName, FieldEmail, FieldPassword, FieldToken}

// ParseField maps a raw field name to a known Field.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// FieldErrors holds at most one message per known field. The zero value
// means no errors.
type FieldErrors struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Get returns the message for f, or "" when the field is valid.
func (e FieldErrors) Get(f Field) string {
	switch f {
	case FieldName:
		return e.Name
	case FieldEmail:
		return e.Email
	case FieldPassword:
		return e.Password
	case FieldToken:
		return e.Token
	default:
		return ""
	}
}

// Set records msg for f. Unknown fields are ignored.
func (e *FieldErrors) Set(f Field, msg string) {
	switch f {
	case FieldName:
		e.Name = msg
	case FieldEmail:
		e.Email = msg
	case FieldPassword:
		e.Password = msg
	case FieldToken:
		e.Token = msg
	}
}

// Empty reports whether no field carries an error.
func (e FieldErrors) Empty() bool {
	return e == FieldErrors{}
}

// Form is the raw input of a single submission attempt.
type Form map[Field]string

// Value returns the raw value of f.
func (f Form) Value(field Field) string {
	return f[field]
}
