// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Language identifies a supported source language.
//
// WHY A NAMED STRING TYPE?
// A plain string would let any value through ("javascript", "brainfuck", typos).
// A named type plus a ParseLanguage gate means the rest of the codebase only
// ever sees one of the declared constants — the compiler can't enforce it,
// but the single parse point can.
type Language string

const (
	LanguagePython Language = "python"
	LanguageCPP    Language = "cpp"
)

// ParseLanguage normalises a user-supplied language name.
// It accepts common aliases ("c++", "python3") so clients don't have to
// agree on our exact spelling. Returns false for anything unrecognised.
func ParseLanguage(s string) (Language, bool) {
	switch s {
	case "python", "py", "python3":
		return LanguagePython, true
	case "cpp", "c++", "cxx":
		return LanguageCPP, true
	}
	return "", false
}

// ExecutionRequest describes one run of a source snippet.
// It is constructed per request and never mutated afterwards.
//
// Stdin is only meaningful for the compiled-language backends — the
// interactive Python path feeds input through the interpreter runtime.
type ExecutionRequest struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
	Stdin    string   `json:"stdin,omitempty"`
}

// ExecutionOutcome is the normalised result of one execution, regardless of
// which backend produced it. Produced once per request; never mutated after
// the dispatcher returns it.
type ExecutionOutcome struct {
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	ExitCode     int           `json:"exitCode"`
	TimedOut     bool          `json:"timedOut"`
	BackendError string        `json:"backendError,omitempty"`
	Duration     time.Duration `json:"duration"`
}
