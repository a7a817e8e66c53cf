package store

import (
	"context"
	"log"
	"os"
	"os/exec"
)

// EnsureStore 确保转换库文件存在：
//   - 库文件已存在 → 直接返回 true；
//   - 原始抓取文件缺失 → 跳过转换，返回 false (非致命)；
//   - 否则调用外部转换工具 `converter <capture> <store>` 生成库文件。
//
// 转换失败只记录日志并返回 false，依赖该库的分析器对该步骤返回 absent。
func EnsureStore(ctx context.Context, converter, capturePath, storePath string) bool {
	if _, err := os.Stat(storePath); err == nil {
		return true
	}
	if _, err := os.Stat(capturePath); err != nil {
		log.Printf("Capture '%s' not found, skipping conversion for '%s'", capturePath, storePath)
		return false
	}
	if converter == "" {
		log.Printf("Warning: no converter configured, cannot materialize '%s'", storePath)
		return false
	}

	log.Printf("Converting '%s' -> '%s' via %s", capturePath, storePath, converter)
	cmd := exec.CommandContext(ctx, converter, capturePath, storePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("Warning: converter failed for '%s': %v. Output: %s", capturePath, err, string(output))
		// 残留的半成品库文件会让下一次运行误判为已转换
		if rmErr := os.Remove(storePath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("Warning: failed to remove partial store '%s': %v", storePath, rmErr)
		}
		return false
	}
	if _, err := os.Stat(storePath); err != nil {
		log.Printf("Warning: converter reported success but '%s' is missing", storePath)
		return false
	}
	log.Printf("Successfully converted '%s'", storePath)
	return true
}
