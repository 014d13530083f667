package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// BackendFields 描述当前使用的键值后端，不包含口令。
func BackendFields(backendType, address, authMode string) logrus.Fields {
	return logrus.Fields{
		"backend":      backendType,
		"address":      address,
		"backend_auth": authMode,
	}
}

// RecordFields 定位快照中的单条记录，写入与跳过告警共用。
func RecordFields(action string, index int, key string) logrus.Fields {
	return logrus.Fields{
		"action": action,
		"index":  index,
		"key":    key,
	}
}

// LoadFields 标记一次加载周期及其所处阶段。
func LoadFields(cycleID, phase string) logrus.Fields {
	return logrus.Fields{
		"cycle_id": cycleID,
		"phase":    phase,
	}
}

// RequestFields 提供管理接口请求日志字段。
func RequestFields(requestID, method, path, moduleKey string, status int) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"module_key": moduleKey,
		"status":     status,
	}
}
