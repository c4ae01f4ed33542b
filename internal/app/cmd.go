package app

import (
	"fmt"
	"strings"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。引数が無い場合の既定。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションの定期削除を起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を確認する。
	// distrolessイメージのHEALTHCHECK用で、設定の読み込みを行わない。
	CommandHealthcheck Command = "healthcheck"
)

var commandDescriptions = map[Command]string{
	CommandServe:       "APIサーバーを起動する",
	CommandWorker:      "期限切れセッションの定期削除を起動する",
	CommandMigrate:     "データベースマイグレーションを適用する",
	CommandHealthcheck: "起動中のサーバーのヘルスチェックを行う",
}

// Commands は全てのサブコマンドを表示順に返す。
func Commands() []Command {
	return []Command{CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck}
}

// ParseCommand はコマンドライン引数の先頭からサブコマンドを解析する。
// 引数が空の場合はCommandServeを返す。2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	cmd := Command(args[0])
	if _, ok := commandDescriptions[cmd]; !ok {
		return "", fmt.Errorf("unknown command %q\n%s", args[0], Usage())
	}
	return cmd, nil
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: idfinder [command]\n\ncommands:\n")
	for _, cmd := range Commands() {
		fmt.Fprintf(&b, "  %-12s %s\n", cmd, commandDescriptions[cmd])
	}
	return b.String()
}
