package httpapi

import "errors"

var (
	errBodyRequired = errors.New("body is required")
	errURLRequired  = errors.New("url is required")
	errTaskIDExists = errors.New("task_id already exists")

	errCredentialsUnavailable = errors.New("bedrock credentials refresher not configured")
)
