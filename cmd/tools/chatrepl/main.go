package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-tavern/parlor/internal/config"
	"github.com/zhouzirui/z-tavern/parlor/internal/logging"
	"github.com/zhouzirui/z-tavern/parlor/internal/model/persona"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/ai"
	"github.com/zhouzirui/z-tavern/parlor/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New(config.LogConfig{Level: "info"})
		bootstrap.Fatal().Err(err).Msg("配置加载失败")
	}

	personaID := flag.String("persona", cfg.Chat.DefaultPersona, "初始角色 ID")
	welcome := flag.Bool("welcome", cfg.Chat.Welcome, "是否以角色开场白开始对话")
	delay := flag.Duration("delay", cfg.Chat.StreamDelay, "逐词输出间隔")
	flag.Parse()

	// 终端输出给对话使用，日志只保留警告以上
	logCfg := cfg.Log
	logCfg.Level = "warn"
	logCfg.Pretty = true
	logger := logging.NewWithWriter(logCfg, os.Stderr)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("无法加载 .env，改用系统环境变量")
	}

	if !cfg.AI.Enabled() {
		logger.Fatal().Msg("Ark 凭证未配置，请先设置 ARK_API_KEY 与 Model")
	}
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("模型初始化失败")
	}
	completer, err := ai.NewCompleter(ctx, chatModel, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("补全链初始化失败")
	}

	r := &repl{
		personas: persona.NewMemoryStore(persona.Seed()),
		prompts:  ai.NewPersonaPromptManager(),
		delay:    *delay,
		welcome:  *welcome,
		out:      os.Stdout,
	}
	if err := r.start(*personaID, completer, chat.WithCompletionTimeout(cfg.Chat.CompletionTimeout)); err != nil {
		logger.Fatal().Err(err).Msg("会话初始化失败")
	}
	if err := r.run(ctx, os.Stdin); err != nil {
		logger.Fatal().Err(err).Msg("会话异常结束")
	}
}
