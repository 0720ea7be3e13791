package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/goleak"

	"smartfan/internal/config"
)

func TestKafkaSender_ProducesKeyedReport(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "smartfan-cycles" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "node1" {
			return fmt.Errorf("unexpected key %q", key)
		}
		value, _ := msg.Value.Encode()
		var body map[string]interface{}
		if err := json.Unmarshal(value, &body); err != nil {
			return err
		}
		if body["speed"] != float64(50) {
			return fmt.Errorf("unexpected speed %v", body["speed"])
		}
		return nil
	})

	s := newKafkaSender(producer, "smartfan-cycles", "node1")
	if err := s.Send(context.Background(), testCycle(50, 45)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestKafkaSender_DeliveryFailureIsNotFatal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	producer := mocks.NewAsyncProducer(t, nil)
	producer.ExpectInputAndFail(errors.New("broker unavailable"))

	s := newKafkaSender(producer, "smartfan-cycles", "node1")
	if err := s.Send(context.Background(), testCycle(20, 25)); err != nil {
		t.Fatalf("Send should queue without error, got %v", err)
	}
	_ = s.Close()
}

func TestKafkaSender_SendAfterClose(t *testing.T) {
	producer := mocks.NewAsyncProducer(t, nil)
	s := newKafkaSender(producer, "smartfan-cycles", "node1")
	_ = s.Close()
	_ = s.Close()

	if err := s.Send(context.Background(), testCycle(20, 25)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSaramaConfig(t *testing.T) {
	cfg := config.DefaultConfig().Sender.Kafka
	cfg.RequiredAcks = -1
	cfg.Compression = "zstd"
	cfg.SASLEnabled = true
	cfg.SASLMechanism = "scram-sha-512"

	sc, err := saramaConfig(cfg, config.SOCKSConfig{Host: "127.0.0.1", Port: 1080})
	if err != nil {
		t.Fatalf("saramaConfig: %v", err)
	}
	if sc.Producer.RequiredAcks != sarama.WaitForAll {
		t.Errorf("acks: got %v", sc.Producer.RequiredAcks)
	}
	if sc.Producer.Compression != sarama.CompressionZSTD {
		t.Errorf("compression: got %v", sc.Producer.Compression)
	}
	if sc.Net.SASL.Mechanism != sarama.SASLTypeSCRAMSHA512 || sc.Net.SASL.SCRAMClientGeneratorFunc == nil {
		t.Errorf("sasl not configured: %+v", sc.Net.SASL)
	}
	if !sc.Net.Proxy.Enable {
		t.Error("expected SOCKS proxy enabled")
	}
}

func TestSaramaConfig_BadCAFile(t *testing.T) {
	cfg := config.DefaultConfig().Sender.Kafka
	cfg.EnableTLS = true
	cfg.TLSCAFile = "/nonexistent/ca.pem"

	if _, err := saramaConfig(cfg, config.SOCKSConfig{}); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}

func TestScramClient_Conversation(t *testing.T) {
	c := &scramClient{gen: sha256Gen}
	if err := c.Begin("user", "pencil", ""); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	first, err := c.Step("")
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if first == "" || c.Done() {
		t.Errorf("expected client-first message and unfinished conversation, got %q", first)
	}
}
