package models

import (
	"strings"

	"github.com/atotto/clipboard"
)

// Field is one line of a text form
type Field struct {
	Label  string
	Value  string
	Secret bool
}

// Form is a list of fields with one focused at a time
type Form struct {
	Fields []Field
	Focus  int
	Reveal bool
}

func newLoginForm() Form {
	return Form{Fields: []Field{
		{Label: "Email"},
		{Label: "Password", Secret: true},
	}}
}

func newRegisterForm() Form {
	return Form{Fields: []Field{
		{Label: "First name"},
		{Label: "Last name"},
		{Label: "Email"},
		{Label: "Password", Secret: true},
	}}
}

func (f *Form) Next() {
	f.Focus = (f.Focus + 1) % len(f.Fields)
}

func (f *Form) Prev() {
	f.Focus = (f.Focus + len(f.Fields) - 1) % len(f.Fields)
}

// Last reports whether the focus is on the final field
func (f *Form) Last() bool {
	return f.Focus == len(f.Fields)-1
}

func (f *Form) Value(i int) string {
	if i < 0 || i >= len(f.Fields) {
		return ""
	}
	return f.Fields[i].Value
}

func (f *Form) Append(s string) {
	f.Fields[f.Focus].Value += s
}

func (f *Form) Backspace() {
	f.Fields[f.Focus].Value = trimLast(f.Fields[f.Focus].Value)
}

func (f *Form) Clear() {
	f.Fields[f.Focus].Value = ""
}

// Paste replaces the focused field with the clipboard contents
func (f *Form) Paste() {
	if text, ok := readClipboard(); ok {
		f.Fields[f.Focus].Value = text
	}
}

// Display renders a field value, masked unless revealed
func (f *Form) Display(i int) string {
	field := f.Fields[i]
	if field.Secret && !f.Reveal {
		return strings.Repeat("*", len([]rune(field.Value)))
	}
	return field.Value
}

func trimLast(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

// readClipboard returns the clipboard as a single trimmed line
func readClipboard() (string, bool) {
	text, err := clipboard.ReadAll()
	if err != nil || text == "" {
		return "", false
	}
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)
	return text, text != ""
}

// printable is a single visible ASCII character or a space
func printable(key string) bool {
	return len(key) == 1 && key[0] >= 32 && key[0] <= 126
}

// numeric accepts the characters of a decimal amount
func numeric(key string) bool {
	return len(key) == 1 && ((key[0] >= '0' && key[0] <= '9') || key[0] == '.')
}
