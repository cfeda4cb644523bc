package svc

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrStreamInitFailed 错误：行情流多路复用器创建失败
var ErrStreamInitFailed = errors.New("stream initialization failed")
