package logger

import "github.com/sirupsen/logrus"

// Discard drops every entry. Pipeline components fall back to it when they
// are built without a logger.
var Discard Logger = discard{}

type discard struct{}

func (d discard) WithFields(map[string]interface{}) Logger { return d }
func (d discard) WithField(string, interface{}) Logger     { return d }
func (d discard) WithError(error) Logger                   { return d }

func (discard) Debug(...interface{})             {}
func (discard) Info(...interface{})              {}
func (discard) Warn(...interface{})              {}
func (discard) Error(...interface{})             {}
func (discard) Log(logrus.Level, ...interface{}) {}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
