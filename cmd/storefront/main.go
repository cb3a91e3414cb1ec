package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	kafka_config "github.com/RoyceAzure/lab/rj_kafka/kafka/config"
	kafka_consumer "github.com/RoyceAzure/lab/rj_kafka/kafka/consumer"
	kafka_producer "github.com/RoyceAzure/lab/rj_kafka/kafka/producer"
	"github.com/RoyceAzure/lab/rj_redis/pkg/redis_client"
	handler "github.com/RoyceAzure/lab/storefront/internal/handler/event"
	"github.com/RoyceAzure/lab/storefront/internal/infra/consumer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer/balancer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/eventdb"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/config"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const orderEventPartitions = 6

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cf := config.GetConfig()

	conn, err := db.GetDbConn(cf.DbName, cf.DbHost, cf.DbPort, cf.DbUser, cf.DbPas)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect postgres")
	}
	dbDao := db.NewDbDao(conn)
	if err := dbDao.InitMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate db schema")
	}

	redisClient, err := redis_client.GetRedisClient(cf.RedisAddr, redis_client.WithPassword(cf.RedisPas))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}

	var eventDao *eventdb.EventDao
	if cf.EventStoreConnStr != "" {
		settings, err := esdb.ParseConnectionString(cf.EventStoreConnStr)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid eventstore connection string")
		}
		esClient, err := esdb.NewClient(settings)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect eventstore")
		}
		eventDao = eventdb.NewEventDao(esClient)
	}

	producerCfg := kafka_config.DefaultConfig()
	producerCfg.Brokers = cf.KafkaBrokerList()
	producerCfg.Topic = cf.OrderEventTopic
	producerCfg.Partition = orderEventPartitions
	producerCfg.Balancer = balancer.NewOrderBalancer(orderEventPartitions)
	kafkaProducer, err := kafka_producer.New(producerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	orderEventProducer := producer.NewOrderEventProducer(kafkaProducer)

	consumerCfg := kafka_config.DefaultConfig()
	consumerCfg.Brokers = cf.KafkaBrokerList()
	consumerCfg.Topic = cf.PaymentEventTopic
	consumerCfg.ConsumerGroup = cf.ConsumerGroupID
	kafkaConsumer, err := kafka_consumer.New(consumerCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	orderRepo := db.NewOrderRepo(dbDao)
	productRepo := db.NewProductRepo(dbDao)
	cartRepo := redis_repo.NewCartRepo(redisClient)

	orderService := service.NewOrderService(orderRepo, productRepo, cartRepo, eventDao, orderEventProducer)

	paymentEventHandler := handler.NewPaymentEventHandler(orderService)
	paymentDispatcher := handler.NewPaymentEventHandlerDispatcher(paymentEventHandler, redisClient)
	paymentConsumer := consumer.NewPaymentEventConsumer(kafkaConsumer, paymentDispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := paymentConsumer.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	log.Info().Msg("storefront started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("storefront stopped with error")
	}

	// 先停消費再關producer, 避免處理中事件發布失敗
	paymentConsumer.Stop()

	if err := kafkaProducer.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close kafka producer")
	}

	log.Info().Msg("storefront shutdown complete")
}
