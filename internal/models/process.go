package models

import "time"

type ProcessDetail struct {
	Title     string    `json:"title"`     //display name
	Command   string    `json:"command"`   //full command line
	WorkDir   string    `json:"workDir"`   //working directory
	LogFile   string    `json:"logFile"`   //stdout/stderr target
	Pid       int       `json:"pid"`       //process id
	StartTime time.Time `json:"startTime"` //spawn time
}
