package idfinder

import (
	"errors"
	"fmt"
)

// ConfigurationError は届出APIのエンドポイントが設定されていない場合のエラー。
// ネットワーク通信を行う前に返される。
type ConfigurationError struct {
	Key string // 未設定の環境変数名
}

// Error はerrorインターフェースを実装する。
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set", e.Key)
}

// RequestError は届出APIが成功以外のステータスを返した場合、
// またはレスポンスのエンベロープが不正な場合のエラー。
// Message はレスポンスボディの error / message を優先し、無ければ "HTTP <status>" となる。
type RequestError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。メッセージをそのまま返す。
func (e *RequestError) Error() string {
	return e.Message
}

// IsConfigurationError はerrのチェーンにConfigurationErrorが含まれるかを返す。
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// AsRequestError はerrのチェーンからRequestErrorを取り出す。
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
