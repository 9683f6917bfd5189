// Package menu declares reusable inline-keyboard menus and routes button
// presses back to the handlers that created them.
//
// A Template is built once, registered under an id and rendered any number
// of times. Every render gets a fresh render id; handler buttons carry the
// callback address "{renderId}:{row}:{col}". The Registry resolves an
// inbound address either from its in-memory render cache or, after a
// restart, by looking up the template id persisted by the Navigator and
// re-deriving the same grid.
//
// Re-deriving is only correct while a template's button order stays the
// same: reordering buttons between restarts makes old render ids resolve to
// different handlers. Version the template id when the layout changes.
package menu
