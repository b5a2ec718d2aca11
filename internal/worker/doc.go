// Package worker is the shared pool the blocking and async façades run on.
package worker
