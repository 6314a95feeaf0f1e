// Package testsupport provides temp-dir backed configuration and store
// helpers shared by package tests.
package testsupport
