// Package wizard implements the field-mapping wizard as an explicit,
// session-scoped state machine over black-box collaborators for the
// remote app catalog, the destination schema, and mapping persistence.
package wizard
