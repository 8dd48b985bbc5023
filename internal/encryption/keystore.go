package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// DefaultKeySize は生成するRSA鍵のビット長のデフォルト値。
const DefaultKeySize = 4096

// KeyStore はRSA鍵ペアを保持する。秘密鍵はパッケージ外に公開しない。
type KeyStore struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// PublicKey は公開鍵を返す。
func (k *KeyStore) PublicKey() *rsa.PublicKey {
	return k.publicKey
}

// Bits は鍵長をビット数で返す。
func (k *KeyStore) Bits() int {
	return k.publicKey.N.BitLen()
}

// Fingerprint は公開鍵(PKIX DER)のSHA-256フィンガープリントを返す。
func (k *KeyStore) Fingerprint() string {
	der, err := x509.MarshalPKIXPublicKey(k.publicKey)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// LoadKeys は既存の鍵ペアをファイルから読み込む。双方のファイルが存在し、
// 公開鍵が秘密鍵から導出されるものと一致しなければならない。
func LoadKeys(privatePath, publicPath string) (*KeyStore, error) {
	privateKey, err := loadPrivateKey(privatePath)
	if err != nil {
		return nil, err
	}
	publicKey, err := loadPublicKey(publicPath)
	if err != nil {
		return nil, err
	}
	if !publicKey.Equal(&privateKey.PublicKey) {
		return nil, fmt.Errorf("%w: public key does not match private key", ErrKeyLoad)
	}
	return &KeyStore{privateKey: privateKey, publicKey: publicKey}, nil
}

// LoadOrGenerate は鍵ペアを読み込み、存在しない場合は生成して保存する。
// 同時に起動した複数プロセスの生成競合はロックファイルで直列化し、
// 敗者は勝者が書き出した鍵ペアを読み込む。
func LoadOrGenerate(privatePath, publicPath string, bits int) (*KeyStore, error) {
	if bits <= 0 {
		bits = DefaultKeySize
	}
	if keyFilesExist(privatePath, publicPath) {
		return LoadKeys(privatePath, publicPath)
	}

	if err := os.MkdirAll(filepath.Dir(privatePath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating key directory: %v", ErrKeyLoad, err)
	}

	unlock, err := acquireLock(privatePath + ".lock")
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring generation lock: %v", ErrKeyLoad, err)
	}
	defer unlock()

	// ロック待ちの間に別プロセスが生成を終えている場合がある
	if keyFilesExist(privatePath, publicPath) {
		return LoadKeys(privatePath, publicPath)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: generating RSA key: %v", ErrKeyLoad, err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding private key: %v", ErrKeyLoad, err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := writeFileAtomic(privatePath, privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing private key: %v", ErrKeyLoad, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding public key: %v", ErrKeyLoad, err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := writeFileAtomic(publicPath, pubPEM, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing public key: %v", ErrKeyLoad, err)
	}

	return &KeyStore{privateKey: privateKey, publicKey: &privateKey.PublicKey}, nil
}

// loadPrivateKey はPEMファイルからRSA秘密鍵を読み込む。PKCS#8とPKCS#1の
// 両形式に対応する。
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading private key: %v", ErrKeyLoad, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrKeyLoad, path)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA private key", ErrKeyLoad, path)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing private key: %v", ErrKeyLoad, err)
	}
	return key, nil
}

// loadPublicKey はPEMファイルからRSA公開鍵を読み込む。PKIXとPKCS#1の
// 両形式に対応する。
func loadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading public key: %v", ErrKeyLoad, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrKeyLoad, path)
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA public key", ErrKeyLoad, path)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing public key: %v", ErrKeyLoad, err)
	}
	return key, nil
}

func keyFilesExist(privatePath, publicPath string) bool {
	if _, err := os.Stat(privatePath); err != nil {
		return false
	}
	if _, err := os.Stat(publicPath); err != nil {
		return false
	}
	return true
}

// acquireLock はロックファイルに排他ロックをかけ、解放関数を返す。
func acquireLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}

// writeFileAtomic は同一ディレクトリの一時ファイルに書き込んでから
// リネームする。途中で失敗しても書きかけのファイルを残さない。
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
