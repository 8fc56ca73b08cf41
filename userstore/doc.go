// Package userstore groups the UserDirectory implementations shipped with
// goCred: memory for tests and examples, postgres and sqlite for deployments.
package userstore
