package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "FLOWLINE_DATABASE_TYPE"
const DATABASE_URL = "FLOWLINE_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "FLOWLINE_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "FLOWLINE_SERVER_WEB_PORT"
const SCHEDULER_INTERVAL = "FLOWLINE_SCHEDULER_INTERVAL"     //how often the scheduler scans for due delays and approval timeouts
const SCHEDULER_BATCH_SIZE = "FLOWLINE_SCHEDULER_BATCH_SIZE" //number of due runs/approvals to pull per scan
const SEND_MAX_ATTEMPTS = "FLOWLINE_SEND_MAX_ATTEMPTS"       //attempts at the messaging collaborator before an action step fails
const RUNS_DEFAULT_PAGE_SIZE = "FLOWLINE_RUNS_DEFAULT_PAGE_SIZE"

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == SCHEDULER_INTERVAL {
		return "5s"
	}
	if settingKey == SCHEDULER_BATCH_SIZE {
		return "50"
	}
	if settingKey == SEND_MAX_ATTEMPTS {
		return "3"
	}
	if settingKey == RUNS_DEFAULT_PAGE_SIZE {
		return "50"
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./flowline.db"
	}
	return ""
}
