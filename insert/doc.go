// Package insert appends one request body to the store and decides
// how to respond.
//
// Expected problems (store unavailable or full, entry too big) are reported
// to the user with a normal page. Problems that leave no safe response
// (null byte in the body, failed or short write) abort instead: the
// http server drops the connection, the cgi and insert commands exit
// with status 1.
package insert
