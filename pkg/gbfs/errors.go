package gbfs

import (
	"errors"
	"fmt"
)

// ErrFeedNotAvailable is returned when the feed index does not list the named sub-feed
var ErrFeedNotAvailable = errors.New("feed not available")

// ErrRateLimited is returned when the endpoint keeps answering with a non JSON payload
var ErrRateLimited = errors.New("rate limited")

type FetchError struct {
	Feed string
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %s", e.Feed, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type ParseError struct {
	Feed string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Feed, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
