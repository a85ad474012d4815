package script

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"

	"github.com/dop251/goja"
)

// md5Hash 计算 MD5 哈希
func md5Hash(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// sha1Hash 计算 SHA1 哈希
func sha1Hash(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// sha256Hash 计算 SHA256 哈希
func sha256Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// sha512Hash 计算 SHA512 哈希
func sha512Hash(s string) string {
	h := sha512.Sum512([]byte(s))
	return hex.EncodeToString(h[:])
}

// bindCrypto 暴露 crypto 和 base64 工具对象，签名验证类脚本会用到
func (s *session) bindCrypto() {
	vm := s.vm

	crypto := vm.NewObject()
	crypto.Set("md5", md5Hash)
	crypto.Set("sha1", sha1Hash)
	crypto.Set("sha256", sha256Hash)
	crypto.Set("sha512", sha512Hash)
	vm.Set("crypto", crypto)

	b64 := vm.NewObject()
	b64.Set("encode", func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	})
	b64.Set("decode", func(encoded string) goja.Value {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(string(data))
	})
	vm.Set("base64", b64)
}
