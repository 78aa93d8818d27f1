// Package model defines the vendor-neutral contract between the loop engine
// and language-model backends. A backend turns one Request (instruction,
// conversation contents, tool definitions) into one Response (a single
// assistant turn), so the engine never branches on provider specifics.
package model
