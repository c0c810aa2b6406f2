package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"miuruta/db"
	"miuruta/directory"
	"miuruta/geocode"
	"miuruta/handler"
	"miuruta/maplink"
	"miuruta/optimizer"
	"miuruta/resolver"
	"miuruta/route"
	"miuruta/syncer"
)

func main() {
	fmt.Println("=== MiuRuta - planificador de rutas de reparto ===")

	// .env 只在本地开发存在，缺失不是错误
	if err := godotenv.Load(); err == nil {
		log.Println("configuración cargada desde .env")
	}

	// 1. 初始化数据库 (连接 PostgreSQL，自动迁移表结构)
	db.InitDB()

	// 2. 外部服务客户端
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		log.Println("advertencia: GOOGLE_MAPS_API_KEY no configurado, geocodificación y optimización deshabilitadas")
	}

	geocoder := geocode.NewClient(apiKey)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		})
		if err := rc.Ping(context.Background()).Err(); err != nil {
			log.Printf("advertencia: redis no disponible (%v), geocodificación sin caché", err)
		} else {
			geocoder = geocoder.WithCache(geocode.NewRedisCache(rc))
			log.Println("caché de geocodificación en redis habilitado")
		}
	}

	bsale := directory.NewClient(os.Getenv("BSALE_BASE_URL"), os.Getenv("BSALE_ACCESS_TOKEN"))
	routesAPI := optimizer.NewClient(apiKey)
	extractor := maplink.NewExtractor()

	// 3. 目录缓存: 先从快照文件加载 (快)，再后台整体刷新 (慢)
	cache := directory.NewCache(bsale, envOrDefault("CACHE_FILE", "clients_cache.json"))
	cache.Load()
	go func() {
		if err := cache.Refresh(context.Background()); err != nil {
			log.Printf("refresco inicial del directorio fallido: %v", err)
		}
	}()

	// 4. 服务层
	clientStore := db.NewClientStore(db.DB)
	routeStore := db.NewRouteStore(db.DB)
	stops := resolver.NewResolver(clientStore, cache, geocoder, extractor)
	assembler := route.NewAssembler(stops, routesAPI, geocoder, routeStore)
	orch := syncer.New(bsale, clientStore, geocoder)

	// 5. HTTP 层
	r := gin.Default()
	setupRoutes(r,
		handler.NewClientHandler(clientStore, cache, extractor),
		handler.NewSyncHandler(orch),
		handler.NewRouteHandler(assembler, routeStore),
	)

	addr := ":" + envOrDefault("PORT", "8080")
	fmt.Println("servidor escuchando en", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("no se pudo iniciar el servidor: %v", err)
	}
}

// setupRoutes 配置路由
func setupRoutes(r *gin.Engine, clients *handler.ClientHandler, sync *handler.SyncHandler, routes *handler.RouteHandler) {
	// CORS 跨域中间件 (前端独立部署)
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsCfg))

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong", "status": "ok"})
	})

	api := r.Group("/api")
	{
		// 公开接口 (无需认证)
		api.POST("/login", handler.Login)
		api.POST("/register", handler.Register)

		// 业务接口，全部要求登录
		authorized := api.Group("/")
		authorized.Use(handler.AuthMiddleware())
		{
			authorized.GET("/clients", clients.List)
			authorized.POST("/clients/refresh", clients.RefreshDirectory)
			authorized.POST("/clients/:id/verify", clients.Verify)
			authorized.POST("/clients/:id/fix-address", clients.FixAddress)

			authorized.POST("/sync", sync.Trigger)
			authorized.GET("/sync/status", sync.Status)

			authorized.POST("/optimize", routes.Optimize)
			authorized.GET("/routes/recent", routes.Recent)
		}
	}
}

// envOrDefault 获取环境变量，如果不存在则返回默认值
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
