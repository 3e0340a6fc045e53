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

package config

const (
	ConfigDir                   = ".go-adb"
	ConfigFile                  = "config"
	DBFile                      = "records.db"
	DefaultLogLevel             = "info"
	DefaultMaxPayload           = 1024 * 1024
	DefaultCapturePort          = 5555
	DefaultProxyAddress         = "127.0.0.1"
	DefaultProxyPort            = 5556
	DefaultProxyUpstreamAddress = "127.0.0.1"
	DefaultProxyUpstreamPort    = 5555
	DefaultApiAddress           = "127.0.0.1"
	DefaultApiPort              = 8005
	DefaultAMQPExchange         = "adb"
)
