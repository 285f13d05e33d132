/*
Package errors provides structured error handling shared across gridswarm.

It defines a standard AppError type that includes:
  - Error Code (standardized strings like NOT_FOUND, INTERNAL)
  - Message (human-readable description)
  - Underlying Error (chaining)

It also provides constructors for the generic codes (NotFound,
InvalidArgument, Conflict, Forbidden, Internal, Unavailable) and CodeOf for
reading a code back, all compatible with errors.Is/errors.As. The
component-specific errors (timeouts, missing registry keys, not-in-group,
transport failures) are built with New in their own packages.
*/
package errors
