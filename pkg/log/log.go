/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	LogPrefix  = "[go-adb] "
	HelpLevels = "Must be one of: error, warning, info, debug."
)

var levelMapping = map[string]logrus.Level{
	"error":   logrus.ErrorLevel,
	"warning": logrus.WarnLevel,
	"info":    logrus.InfoLevel,
	"debug":   logrus.DebugLevel,
}

var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		DisableColors:    true,
		DisableQuote:     true,
		QuoteEmptyFields: true,
	})
	return l
}

func SetLevel(strLevel string) error {
	level, ok := levelMapping[strLevel]
	if !ok {
		return errors.New("Wrong log level. " + HelpLevels)
	}
	logger.SetLevel(level)
	return nil
}

// ValidLevel reports whether strLevel is one of the supported level names
func ValidLevel(strLevel string) bool {
	_, ok := levelMapping[strLevel]
	return ok
}

func Init(out io.Writer, strLevel string) {
	logger.SetOutput(out)
	if err := SetLevel(strLevel); err != nil {
		panic(err)
	}
}

// Writer returns a writer whose lines end up in the log at info level.
// The caller must close it.
func Writer() *io.PipeWriter {
	return logger.WriterLevel(logrus.InfoLevel)
}

func Error(format string, v ...interface{}) {
	logger.Errorf(LogPrefix+format, v...)
}

func Warning(format string, v ...interface{}) {
	logger.Warnf(LogPrefix+format, v...)
}

func Info(format string, v ...interface{}) {
	logger.Infof(LogPrefix+format, v...)
}

func Debug(format string, v ...interface{}) {
	logger.Debugf(LogPrefix+format, v...)
}
