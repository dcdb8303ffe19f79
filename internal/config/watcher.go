package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"coinflip-server/common/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"go.uber.org/zap"
)

// StartWatch 监听 Nacos 配置变化，变更时替换当前配置并回调 onChange(old, new)
// 未配置 Nacos 时直接返回（本地文件/Etcd 模式不做监听）
func StartWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) == "" {
		logger.Info("nacos not configured, config watch skipped")
		return nil
	}

	cli, dataID, group, err := newNacosClient()
	if err != nil {
		return err
	}

	err = cli.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			newCfg, err := decode(dataId, []byte(data))
			if err != nil {
				logger.Warn("nacos config change ignored", zap.String("data_id", dataId), zap.Error(err))
				return
			}
			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
			logger.Info("nacos config reloaded", zap.String("namespace", namespace), zap.String("data_id", dataId))
		},
	})
	if err != nil {
		return fmt.Errorf("listen nacos config: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = cli.CancelListenConfig(vo.ConfigParam{DataId: dataID, Group: group})
		cli.CloseClient()
	}()

	logger.Info("nacos config watch started", zap.String("data_id", dataID), zap.String("group", group))
	return nil
}
