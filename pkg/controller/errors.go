package controller

import "errors"

var (
    ErrResourceUnavailable    = errors.New("controller: resources unavailable")
    ErrProcessOperationFailed = errors.New("controller: process operation failed")
    ErrConfigUnreadable       = errors.New("controller: rendered config unreadable")
    ErrRenderFailed           = errors.New("controller: render quorum failed")
    ErrUnknownEvent           = errors.New("controller: unknown event")
)
