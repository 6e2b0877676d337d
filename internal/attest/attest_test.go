package attest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	herr "github.com/girste/hardenspec/internal/errors"
)

func newEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("hardenspec test", "", "ci@example.com",
		&packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	return entity
}

func writeArmored(t *testing.T, path, blockType string, serialize func(w *bytes.Buffer) error) {
	t.Helper()
	var raw bytes.Buffer
	if err := serialize(&raw); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	w, err := armor.Encode(&out, blockType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func keyFiles(t *testing.T, entity *openpgp.Entity) (priv, pub string) {
	dir := t.TempDir()
	priv = filepath.Join(dir, "signing.asc")
	pub = filepath.Join(dir, "signing.pub.asc")
	writeArmored(t, priv, openpgp.PrivateKeyType, func(w *bytes.Buffer) error { return entity.SerializePrivate(w, nil) })
	writeArmored(t, pub, openpgp.PublicKeyType, func(w *bytes.Buffer) error { return entity.Serialize(w) })
	return priv, pub
}

func TestSignAndVerify(t *testing.T) {
	entity := newEntity(t)
	privPath, pubPath := keyFiles(t, entity)

	signer, err := LoadSigner(privPath, nil)
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}

	dir := t.TempDir()
	reportPath := filepath.Join(dir, "report.json")
	report := []byte(`{"runId":"abc","summary":{"fail":0}}` + "\n")
	if err := os.WriteFile(reportPath, report, 0644); err != nil {
		t.Fatal(err)
	}

	sigPath, err := signer.SignBytes(reportPath, report)
	if err != nil {
		t.Fatalf("SignBytes: %v", err)
	}
	if sigPath != reportPath+".asc" {
		t.Errorf("sigPath = %s", sigPath)
	}

	verifier, err := NewVerifier(pubPath)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	keyID, err := verifier.VerifyFile(reportPath, sigPath)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if keyID != signer.KeyID() {
		t.Errorf("keyID = %s, want %s", keyID, signer.KeyID())
	}

	if err := os.WriteFile(reportPath, []byte(`{"runId":"abc","summary":{"fail":3}}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.VerifyFile(reportPath, sigPath); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("VerifyFile(modified) error = %v, want ErrSignature", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	privPath, _ := keyFiles(t, newEntity(t))
	_, otherPub := keyFiles(t, newEntity(t))

	signer, err := LoadSigner(privPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	message := []byte("report")
	var sig bytes.Buffer
	if err := signer.Sign(&sig, bytes.NewReader(message)); err != nil {
		t.Fatal(err)
	}

	verifier, err := NewVerifier(otherPub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.Verify(bytes.NewReader(message), &sig); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("Verify() with an unrelated key error = %v, want ErrSignature", err)
	}
}

func TestLoadSignerPassphrase(t *testing.T) {
	entity := newEntity(t)
	passphrase := []byte("correct horse")
	if err := entity.EncryptPrivateKeys(passphrase, nil); err != nil {
		t.Fatalf("EncryptPrivateKeys: %v", err)
	}
	path := filepath.Join(t.TempDir(), "encrypted.asc")
	writeArmored(t, path, openpgp.PrivateKeyType, func(w *bytes.Buffer) error {
		return entity.SerializePrivateWithoutSigning(w, nil)
	})

	if _, err := LoadSigner(path, nil); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("LoadSigner without passphrase error = %v, want ErrSignature", err)
	}
	if _, err := LoadSigner(path, []byte("wrong")); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("LoadSigner with a wrong passphrase error = %v, want ErrSignature", err)
	}
	if _, err := LoadSigner(path, passphrase); err != nil {
		t.Errorf("LoadSigner with the passphrase: %v", err)
	}
}

func TestLoadSignerPublicOnly(t *testing.T) {
	_, pubPath := keyFiles(t, newEntity(t))
	if _, err := LoadSigner(pubPath, nil); !herr.Is(err, herr.ErrSignature) {
		t.Errorf("LoadSigner(public key) error = %v, want ErrSignature", err)
	}
}

func TestReadKeyRingErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewVerifier(filepath.Join(dir, "missing.asc")); err == nil {
		t.Error("NewVerifier(missing) should fail")
	}
	garbage := filepath.Join(dir, "garbage.asc")
	if err := os.WriteFile(garbage, []byte("not a key"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewVerifier(garbage); err == nil {
		t.Error("NewVerifier(garbage) should fail")
	}
}
